// Package nn is a small CPU neural network core for text convolution models:
// embedding lookup, dropout, 1-D convolution, global max pooling, dense
// layers, parallel branches, categorical cross-entropy and Adam.
//
// Activations flow as row-major Tensors of shape (Len, Dim): Len positions of
// Dim channels. Flat vectors have Len 1. A forward pass returns a Tape holding
// each layer's cache; Backward consumes the tape and accumulates parameter
// gradients into a Gradients value owned by the caller, so several goroutines
// can run passes over the same Model as long as each uses its own Gradients
// and RNG and nobody updates parameters meanwhile.
package nn
