// Package inkwell is a versioned, addressable content store.
//
// Content lives in small nodes addressed by structured URIs of the form
// scheme://namespace@path.extension#revision. Every write lands in a
// per-node draft slot; publishing promotes the draft to the next
// numbered revision and atomically makes it the one served revision for
// that node. Content-type plugins convert raw stored data into
// renderable output, and binary assets are deduplicated in a
// content-addressed blob store.
//
// The Service interface is the only API external callers use. It is
// assembled from explicit dependencies:
//
//	svc, err := inkwell.New(
//		inkwell.WithRepository(memory.New()),
//		inkwell.WithRegistry(plugin.NewRegistry(
//			text.New(),
//			markdown.New(),
//			image.New(blobstore),
//		)),
//	)
//
// Repositories (memory, postgres) and blob stores (memory, fs, s3) are
// provided in subpackages.
package inkwell
