package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	hitfinder "github.com/next-exp/hitfinder_go/pkg"
)

type WorkerData struct {
	Seq    int
	Window hitfinder.TimeWindow
}

type WorkerResult struct {
	Seq    int
	Result hitfinder.WindowResult
	Err    error
}

// worker owns its processor and histograms, nothing is shared between
// workers except the read-only lookups.
func worker(id int, processor hitfinder.Processor, jobs <-chan WorkerData, results chan<- WorkerResult) {
	for job := range jobs {
		results <- processWindow(id, &processor, job)
	}
}

func processWindow(id int, processor *hitfinder.Processor, job WorkerData) (result WorkerResult) {
	result.Seq = job.Seq
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("worker %d recovered from panic on window %d: %v", id, job.Window.Index, r)
		}
	}()
	if VerbosityLevel > 2 {
		message := fmt.Sprintf("Worker %d processing %s", id, job.Window)
		logger.Info(message, "worker")
	}
	result.Result, result.Err = processor.ProcessWindow(job.Window)
	return result
}

func sendWindowsToWorkers(fileReader *FileReader, jobs chan<- WorkerData) int {
	defer close(jobs)
	seq := 0
	for {
		window, err := fileReader.getNextWindow()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				message := fmt.Errorf("error reading window: %w", err)
				logger.Error(message.Error())
			}
			return seq
		}
		jobs <- WorkerData{Seq: seq, Window: window}
		seq++
	}
}

// processWorkerResults writes results in reading order, buffering the ones
// that arrive early.
func processWorkerResults(results <-chan WorkerResult, sink hitfinder.Sink) (int, int) {
	pending := make(map[int]WorkerResult)
	next := 0
	nPulses, nHits := 0, 0
	var totalTime time.Duration

	for res := range results {
		pending[res.Seq] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if ready.Err != nil {
				message := fmt.Errorf("discarding window %d: %w", ready.Result.Index, ready.Err)
				logger.Error(message.Error())
				continue
			}
			start := time.Now()
			if err := sink.WritePulses(ready.Result.Index, ready.Result.Pulses); err != nil {
				logger.Error(err.Error())
			}
			if err := sink.WriteHits(ready.Result.Index, ready.Result.Hits); err != nil {
				logger.Error(err.Error())
			}
			totalTime += time.Since(start)
			nPulses += len(ready.Result.Pulses)
			nHits += len(ready.Result.Hits)
		}
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Total time writing: %d ms", totalTime.Milliseconds())
		logger.Info(message, "worker")
	}
	return nPulses, nHits
}

// runWorkers processes every window of the file and returns the merged
// control histograms.
func runWorkers(fileReader *FileReader, template hitfinder.Processor, nWorkers int, sink hitfinder.Sink) *hitfinder.Histograms {
	if nWorkers < 1 {
		nWorkers = 1
	}
	jobs := make(chan WorkerData, nWorkers)
	results := make(chan WorkerResult, nWorkers)

	partials := make([]*hitfinder.Histograms, nWorkers)
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		partials[i] = hitfinder.NewHistograms()
		hitfinder.DefineControlHistograms(partials[i], template.Config)
		processor := template
		processor.Stats = partials[i]
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(id, processor, jobs, results)
		}(i)
	}

	go sendWindowsToWorkers(fileReader, jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	nPulses, nHits := processWorkerResults(results, sink)
	message := fmt.Sprintf("Total: %d pulses, %d hits", nPulses, nHits)
	logger.Info(message, "worker")

	merged := hitfinder.NewHistograms()
	hitfinder.DefineControlHistograms(merged, template.Config)
	for _, partial := range partials {
		merged.Merge(partial)
	}
	return merged
}
