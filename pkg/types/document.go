package types

// Document is a raw input handed to the segmentation pipeline: the full
// text as received from an ingestion source, optionally prefixed by a
// "---" delimited frontmatter block.
type Document struct {
	ID  string
	Raw string
}
