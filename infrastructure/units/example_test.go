package units_test

import (
	"fmt"

	"github.com/ahrav/go-nns/infrastructure/units"
	"github.com/ahrav/go-nns/internal/domain"
)

func ExampleNNS() {
	template := domain.Curve{A: []float64{0, 1, 2}, B: []float64{0, 1, 2}}
	candidate := domain.Curve{A: []float64{0, 1, 2}, B: []float64{0, 1, 4}}

	score, err := units.NNS(template, candidate, 0.01, 0.5)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%.2f\n", score)
	// Output: 66.67
}
