package cache

import (
	"fmt"
	"net/url"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ListKey derives the cache key of a list query.  It depends only on the
// query's semantic parameters, so equal queries share one entry and
// different queries never collide:
//
//	movies:list:0:10
//	sessions:list:20:10:sort=date:desc:f=room_id=3
//
// Filter values are URL-escaped and sorted by name.
func ListKey(resource string, q model.ListQuery) string {
	key := fmt.Sprintf("%s:list:%d:%d", resource, q.Offset, q.Limit)
	if q.SortBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		key += ":sort=" + q.SortBy + ":" + dir
	}
	if len(q.Filters) > 0 {
		vals := url.Values{}
		for k, v := range q.Filters {
			vals.Set(k, v)
		}
		key += ":f=" + vals.Encode()
	}
	return key
}

// ListPrefix is the common prefix of every ListKey for resource.
func ListPrefix(resource string) string {
	return resource + ":list"
}

// LockKey is the key of the fill lock guarding key.
func LockKey(key string) string {
	return "lock:" + key
}
