package contenttree

var publishedKinds = map[RefKind]RefKind{
	RefKindPage:  RefKindPublishedPage,
	RefKindBlock: RefKindPublishedBlock,
	RefKindMedia: RefKindPublishedMedia,
}

// PublishedKind maps a draft reference kind to its published counterpart.
// Kinds without a counterpart are returned unchanged.
func PublishedKind(kind RefKind) RefKind {
	if published, ok := publishedKinds[kind]; ok {
		return published
	}
	return kind
}

// PublishedChildItems rewrites every reference kind to its published
// counterpart, preserving order.
func PublishedChildItems(items []ChildItem) []ChildItem {
	out := make([]ChildItem, len(items))
	for i, item := range items {
		out[i] = ChildItem{ContentRef: item.ContentRef, RefKind: PublishedKind(item.RefKind)}
	}
	return out
}
