package types

import (
	"fmt"
	"strconv"
	"sync"
)

// Locator is the numeric record locator behind a GUID.
// Revision -1 means the current revision.
type Locator struct {
	ContentID int64
	Revision  int
}

// IdentifierResolver decodes a GUID to its record locator.
type IdentifierResolver interface {
	Decode(id GUID) (Locator, error)
}

// GUIDResolver decodes GUIDs by taking their uuid part as the content id.
type GUIDResolver struct{}

// Decode implements IdentifierResolver.
func (GUIDResolver) Decode(id GUID) (Locator, error) {
	n, err := guidUUID(string(id))
	if err != nil {
		return Locator{}, err
	}
	return Locator{ContentID: n, Revision: -1}, nil
}

// FilterItem is one candidate flowing through a filter chain.
// Instances are created per request and must not be copied after first use.
type FilterItem struct {
	ItemID     GUID
	FolderID   GUID
	SiteID     GUID
	Attributes Attributes

	resolver IdentifierResolver
	keyOnce  sync.Once
	key      string
	keyErr   error
}

// NewFilterItem validates identifiers and attributes and builds an item.
// A nil resolver selects GUIDResolver.
func NewFilterItem(itemID, folderID, siteID GUID, attrs Attributes, resolver IdentifierResolver) (*FilterItem, error) {
	if itemID.IsZero() {
		return nil, fmt.Errorf("%w: item id required", ErrInvalidArgument)
	}
	for _, id := range []GUID{itemID, folderID, siteID} {
		if id.IsZero() {
			continue
		}
		if _, err := ParseGUID(string(id)); err != nil {
			return nil, err
		}
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = GUIDResolver{}
	}
	return &FilterItem{
		ItemID:     itemID,
		FolderID:   folderID,
		SiteID:     siteID,
		Attributes: attrs,
		resolver:   resolver,
	}, nil
}

// Key returns <item>-<folder>-<site>, computed once per instance.
// Item and folder are decoded through the resolver; the site contributes
// its raw uuid part. A decode failure is memoized too.
func (it *FilterItem) Key() (string, error) {
	it.keyOnce.Do(func() {
		it.key, it.keyErr = it.computeKey()
	})
	return it.key, it.keyErr
}

func (it *FilterItem) computeKey() (string, error) {
	resolver := it.resolver
	if resolver == nil {
		resolver = GUIDResolver{}
	}
	item, err := resolver.Decode(it.ItemID)
	if err != nil {
		return "", fmt.Errorf("decode item %s: %w", it.ItemID, err)
	}
	folder := ""
	if !it.FolderID.IsZero() {
		loc, err := resolver.Decode(it.FolderID)
		if err != nil {
			return "", fmt.Errorf("decode folder %s: %w", it.FolderID, err)
		}
		folder = strconv.FormatInt(loc.ContentID, 10)
	}
	site := ""
	if !it.SiteID.IsZero() {
		site = strconv.FormatInt(it.SiteID.UUID(), 10)
	}
	return strconv.FormatInt(item.ContentID, 10) + "-" + folder + "-" + site, nil
}

// ContentID decodes the item id to its content id.
func (it *FilterItem) ContentID() (int64, error) {
	resolver := it.resolver
	if resolver == nil {
		resolver = GUIDResolver{}
	}
	loc, err := resolver.Decode(it.ItemID)
	if err != nil {
		return 0, err
	}
	return loc.ContentID, nil
}

// Attribute returns the named attribute and whether it is present.
func (it *FilterItem) Attribute(name string) (string, bool) {
	v, ok := it.Attributes[name]
	return v, ok
}
