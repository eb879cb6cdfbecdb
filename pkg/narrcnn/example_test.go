package narrcnn_test

import (
	"context"
	"fmt"
	"log"

	"github.com/kratzket/try-git/pkg/narrcnn"
)

func Example() {
	train := []narrcnn.Record{
		{Text: "EE STRAINED HIS LOWER BACK LIFTING A BAG OF ROCK DUST", Label: "BACK"},
		{Text: "EMPLOYEE TWISTED HIS BACK PULLING CABLE", Label: "BACK"},
		{Text: "EE PINCHED HIS THUMB BETWEEN THE DRAWBAR AND COUPLER", Label: "FINGER(S)/THUMB"},
		{Text: "EE CUT HIS INDEX FINGER ON A METAL PLATE", Label: "FINGER(S)/THUMB"},
	}

	c, err := narrcnn.New(
		narrcnn.WithArchitecture("multi"),
		narrcnn.WithEmbeddingDim(8),
		narrcnn.WithMaxLen(16),
		narrcnn.WithEpochs(2),
		narrcnn.WithSeed(1),
	)
	if err != nil {
		log.Fatal(err)
	}

	hist, err := c.Fit(context.Background(), train, nil)
	if err != nil {
		log.Fatal(err)
	}
	pred, err := c.Classify("EE HURT HIS BACK")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("classes:", c.Classes())
	fmt.Println("epochs:", len(hist.Epochs))
	fmt.Println("probabilities:", len(pred.Probabilities))
	// Output:
	// classes: [BACK FINGER(S)/THUMB]
	// epochs: 2
	// probabilities: 2
}
