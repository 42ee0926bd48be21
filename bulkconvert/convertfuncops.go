package bulkconvert

import "cloud.google.com/go/storage"

type ConvertOptions struct {
	ApplyWindowing bool
	IncludeOverlay bool
	ResizeWidth    int
	Label          bool
	StorageClient  *storage.Client
	OnResult       func(ConversionResult)
}

func newConvertOptions(opts ...func(o *ConvertOptions)) ConvertOptions {
	options := ConvertOptions{ApplyWindowing: true}
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// OptNoWindowing ignores the DICOM's window center and width, so the full
// sample range is stretched across the output instead.
func OptNoWindowing() func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.ApplyWindowing = false
	}
}

func OptIncludeOverlay() func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.IncludeOverlay = true
	}
}

func OptResizeWidth(width int) func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.ResizeWidth = width
	}
}

func OptLabel() func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.Label = true
	}
}

// OptStorageClient enables gs:// input paths.
func OptStorageClient(client *storage.Client) func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.StorageClient = client
	}
}

// OptOnResult registers a callback that observes every conversion attempt as
// it completes, before the batch is aggregated.
func OptOnResult(fn func(ConversionResult)) func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.OnResult = fn
	}
}
