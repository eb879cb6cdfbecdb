// Package narrcnn trains convolutional classifiers that predict the injured
// body part from a mining incident narrative.
//
// Quick start:
//
//	c, err := narrcnn.New(narrcnn.WithArchitecture("multi"), narrcnn.WithEpochs(5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hist, err := c.Fit(ctx, train, valid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pred, _ := c.Classify("EE STRAINED HIS LOWER BACK LIFTING A BAG OF ROCK DUST")
//	fmt.Println(pred.Label, pred.Confidence)
//
// After Fit, Classify and ClassifyBatch are safe for concurrent use. A
// classifier lives in memory only; trained weights are not persisted.
package narrcnn
