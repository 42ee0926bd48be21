package bulkconvert

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
)

// ErrNoMatches reports a batch whose pattern matched nothing, a different
// condition from matches that all failed to convert.
var ErrNoMatches = errors.New("no files matched the pattern")

// ConvertDir converts every file in inputDir whose base name matches the
// glob pattern, writing PNGs under outputDir (or beside their sources when
// outputDir is empty). Files are converted concurrently; one failing file
// never aborts the batch, it just becomes a result with a populated Err. The
// returned error is reserved for problems with the batch itself, such as a
// pattern that matches nothing.
func ConvertDir(inputDir, outputDir, pattern string, opts ...func(o *ConvertOptions)) ([]ConversionResult, error) {
	options := newConvertOptions(opts...)

	matches, err := matchingFiles(inputDir, pattern, &options)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, strings.TrimSuffix(inputDir, "/")+"/"+pattern)
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
			return nil, pfx.Err(err)
		}
	}

	concurrency := runtime.NumCPU()

	out := make([]ConversionResult, 0, len(matches))

	results := make(chan ConversionResult, concurrency)
	doneListening := make(chan struct{})
	go func() {
		defer func() { doneListening <- struct{}{} }()
		// Serialize the results so the slice and the callback only ever see
		// one goroutine.
		for {
			select {
			case res, ok := <-results:
				if !ok {
					return
				}

				if options.OnResult != nil {
					options.OnResult(res)
				}
				out = append(out, res)
			}
		}
	}()

	semaphore := make(chan struct{}, concurrency)

	for _, match := range matches {

		// Will block after `concurrency` simultaneous goroutines are running
		semaphore <- struct{}{}

		go func(dicomPath string) {

			// Be sure to permit unblocking once we finish
			defer func() { <-semaphore }()

			results <- convert(dicomPath, OutputName(dicomPath, outputDir), options)
		}(match)
	}

	// Make sure we finish all the conversions before we exit, otherwise we'll
	// lose the last `concurrency` results.
	for i := 0; i < cap(semaphore); i++ {
		semaphore <- struct{}{}
	}

	// Close the results channel and make sure we are done listening
	close(results)
	<-doneListening

	// Concurrency scrambles completion order; put the results back in the
	// order the files were found.
	sort.Slice(out, func(i, j int) bool { return out[i].Input < out[j].Input })

	return out, nil
}

// matchingFiles globs inputDir for base names matching pattern. Google
// Storage folders are listed through the API and filtered with the same
// matching rules as local folders.
func matchingFiles(inputDir, pattern string, options *ConvertOptions) ([]string, error) {
	if strings.HasPrefix(inputDir, "gs://") {
		names, err := ListFromGoogleStorage(inputDir, options.StorageClient)
		if err != nil {
			return nil, err
		}

		matches := make([]string, 0, len(names))
		for _, name := range names {
			ok, err := path.Match(pattern, path.Base(name))
			if err != nil {
				return nil, pfx.Err(err)
			}
			if ok {
				matches = append(matches, name)
			}
		}

		return matches, nil
	}

	matches, err := filepath.Glob(filepath.Join(inputDir, pattern))
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Folders that happen to match the pattern are not convertible.
	files := matches[:0]
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.IsDir() {
			continue
		}
		files = append(files, match)
	}

	return files, nil
}
