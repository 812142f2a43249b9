package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first scrape.
func InitializeMetrics() {
	for _, backend := range []string{"imaging", "vips"} {
		DecodeDuration.WithLabelValues(backend)
		DecodeTotal.WithLabelValues(backend, "success")
		DecodeTotal.WithLabelValues(backend, "error")
	}

	for _, format := range []string{"jpeg", "png", "gif", "bmp", "tiff"} {
		EncodeDuration.WithLabelValues(format)
		EncodeTotal.WithLabelValues(format, "success")
		EncodeTotal.WithLabelValues(format, "error")
	}

	for _, op := range []string{"crop", "adjust", "preview", "resize", "zoom"} {
		EditDuration.WithLabelValues(op)
		EditOperationsTotal.WithLabelValues(op, "success")
		EditOperationsTotal.WithLabelValues(op, "error")
	}

	for _, op := range []string{"read", "rewrite"} {
		for _, result := range []string{"success", "unsupported", "corrupt", "error"} {
			MetadataOperationsTotal.WithLabelValues(op, result)
		}
	}

	for _, op := range []string{"load", "save"} {
		DescriptionPersistDuration.WithLabelValues(op)
		DescriptionPersistTotal.WithLabelValues(op, "success")
		DescriptionPersistTotal.WithLabelValues(op, "error")
	}

	for _, t := range []string{"image_modified", "image_renamed"} {
		EventsPublished.WithLabelValues(t)
	}

	for _, op := range []string{"open", "read", "write", "rename"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
