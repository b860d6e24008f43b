package gblup

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/statgen/gblup/regress"
)

// RunAssociationMany runs independent association analyses across traits on
// nproc workers. Traits share no mutable state and the fitter must be
// reentrant. Results and errors are index-aligned with traits; each trait
// succeeds or fails on its own, with no retries.
func RunAssociationMany(fitter regress.Fitter, traits []Trait, g *mat.SymDense, extra []regress.Term, geno *GenoBlock, opt AssocOptions, nproc int) ([]*AssocResult, []error) {
	if nproc <= 0 {
		nproc = runtime.NumCPU()
	}
	if nproc > len(traits) {
		nproc = len(traits)
	}
	results := make([]*AssocResult, len(traits))
	errs := make([]error, len(traits))
	if len(traits) == 0 {
		return results, errs
	}

	jobChannels := make([]chan int, nproc)
	for i := range jobChannels {
		jobChannels[i] = make(chan int, 32)
	}

	// Dispatcher
	go func() {
		for t := range traits {
			jobChannels[t%nproc] <- t
		}
		for _, c := range jobChannels {
			close(c)
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < nproc; w++ {
		wg.Add(1)
		go func(jobs chan int) {
			defer wg.Done()
			for t := range jobs {
				results[t], errs[t] = RunAssociation(fitter, traits[t], g, extra, geno, opt)
			}
		}(jobChannels[w])
	}
	wg.Wait()
	return results, errs
}
