package services

import "github.com/palisade-admin/palisade/internal/store"

func storePageRequest(page, size int) store.PageRequest {
	return store.PageRequest{Page: page, Size: size}
}
