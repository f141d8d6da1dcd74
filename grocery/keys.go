package grocery

import "github.com/mealkeeper/go-grocery-client/cache"

const (
	KindList          cache.Kind = "list"
	KindPersonalLists cache.Kind = "personal-lists"
	KindFamilyLists   cache.Kind = "family-lists"
)

// ListKey addresses a single list by id.
func ListKey(listID string) cache.Key {
	return cache.NewKey(KindList, listID)
}

// PersonalListsKey addresses the caller's own list-of-lists summary.
func PersonalListsKey() cache.Key {
	return cache.NewKey(KindPersonalLists, "")
}

// FamilyListsKey addresses the list-of-lists summary for a family.
func FamilyListsKey(familyID string) cache.Key {
	return cache.NewKey(KindFamilyLists, familyID)
}
