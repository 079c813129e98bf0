// Package upload renames files staged by an upload-offloading web server.
//
// Web servers such as nginx with the upload module write uploaded files to a
// staging directory under generated names and forward the request with each
// file replaced by form fields describing it:
//
//	--BOUNDARY
//	Content-Disposition: form-data; name="file1.name"
//
//	report.pdf
//	--BOUNDARY
//	Content-Disposition: form-data; name="file1.content_type"
//	...
//
// This package reads that body and moves every staged file next to itself
// under the name the client gave it.
//
// # Pipeline
//
//  1. The caller buffers the whole request body.
//  2. A Processor scans it record by record with Layout.ScanNext. A record is
//     the name, content type, staged path, checksum and size of one file.
//  3. Each record is passed to a Relocator (FSRelocator or S3Relocator).
//  4. Outcomes are collected, in body order, into a Batch.
//
// Scanning stops at the first malformed record since the cursor cannot be
// trusted past it. Failed moves are recorded and processing continues.
//
// # Format assumptions
//
// The scanner does not parse multipart boundaries. It searches for fixed
// markers and jumps a fixed trailer width from one record to the next, as
// described by DefaultLayout. Bodies with much shorter or longer boundaries,
// or with form fields after the last file, are not scanned correctly.
//
// # Usage
//
//	processor := upload.NewProcessor(upload.NewOSRelocator("/"),
//	    upload.WithLogger(logger),
//	)
//	r.Post("/upload", upload.Handler(processor, upload.DefaultConfig()))
//
// or, to continue to the backend after renaming:
//
//	r.With(upload.Intercept(processor, nil)).Post("/upload", backend)
package upload
