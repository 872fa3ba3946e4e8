package models

// RefKind identifies what a discovered reference points at
type RefKind string

const (
	RefStylesheet RefKind = "stylesheet"
	RefScript     RefKind = "script"
	RefIcon       RefKind = "icon"
	RefImage      RefKind = "image"
	// A linked downloadable file (pdf, zip, audio) or a platform
	// file-endpoint target
	RefFile RefKind = "file"
)

// Placement records the shared vs post-local classification decision
// for a reference
type Placement string

const (
	// Site-wide resource fetched once into the shared assets folder
	PlacementShared Placement = "shared"
	// Media private to one document, stored under that document's
	// own folder
	PlacementPostLocal Placement = "post_local"
)

// AssetRef is one reference discovered in a document or stylesheet,
// in first-occurrence order
type AssetRef struct {
	URL       string
	Kind      RefKind
	Placement Placement
}

// WorkKind distinguishes fetch work units
type WorkKind string

const (
	WorkDocument    WorkKind = "document"
	WorkSharedAsset WorkKind = "shared_asset"
	WorkPostAsset   WorkKind = "post_asset"
)

// WorkItem is a single unit of fetch work, immutable once created
type WorkItem struct {
	URL  string
	Dest string
	Kind WorkKind
	// Slug of the owning document; empty for documents and shared
	// assets
	OwnerSlug string
	// RefKind of the reference that produced this item
	Ref RefKind
	// Stylesheet recursion depth; zero for references found in
	// documents
	Depth int
}

// Key returns the ledger key for this item. Shared assets and
// documents key on the source URL alone so every document referencing
// them sees the same completion. Post-local assets prefix the owning
// slug; a space cannot occur in a URL, so the composite never
// collides with a plain URL key.
func (w WorkItem) Key() string {
	if w.Kind == WorkPostAsset && w.OwnerSlug != "" {
		return w.OwnerSlug + " " + w.URL
	}
	return w.URL
}

// Document is a fetched page with its discovered references
type Document struct {
	// Slug is the permalink basename without extension
	Slug string
	// URL is the source permalink
	URL string
	// Index is the 1-based position in the de-duplicated permalink
	// list, fixed across re-runs
	Index int
	// Year and Month come from the permalink path; empty when the
	// permalink carries no date
	Year  string
	Month string
	// Refs holds outbound asset references in first-occurrence order
	Refs []AssetRef
}
