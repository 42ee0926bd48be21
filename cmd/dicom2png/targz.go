package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/Shamay/AutoMorph/bulkconvert"
)

// NewTarGzWriter provides a closer which will sequentially close the tar
// writer, the gzip writer, and finally the underlying file writer in correct
// order.
func NewTarGzWriter(filePath string) (tw *tar.Writer, Close func() error, err error) {
	outFile, err := os.Create(filePath)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	gw := gzip.NewWriter(outFile)
	tw = tar.NewWriter(gw)

	closer := func() error {
		var err error

		if err = tw.Flush(); err != nil {
			return err
		}

		if err = tw.Close(); err != nil {
			return err
		}

		if err = gw.Close(); err != nil {
			return err
		}

		if err = outFile.Close(); err != nil {
			return err
		}

		return nil
	}

	return tw, closer, nil
}

// addFileToArchive copies one written PNG into the archive under its base
// name. Tar headers carry the file size, so the file has to be Stat'ed before
// anything is written.
func addFileToArchive(tw *tar.Writer, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name: path.Base(filename),
		Mode: int64(0644),
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	return nil
}

// bundleOutputs collects every successfully converted PNG into one tar.gz,
// which is friendlier to copy around than thousands of small files.
func bundleOutputs(results []bulkconvert.ConversionResult, archivePath string) error {
	tw, closer, err := NewTarGzWriter(archivePath)
	if err != nil {
		return err
	}

	for _, res := range results {
		if res.Err != nil || res.Output == "" {
			continue
		}

		if err := addFileToArchive(tw, res.Output); err != nil {
			closer()
			return err
		}
	}

	return closer()
}
