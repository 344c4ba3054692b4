package domain

import "agrinexus/internal/pkg/apperr"

var (
	ErrCardNotFound    = apperr.New(apperr.ErrNotFound, "market_card_not_found", "market card not found")
	ErrListingNotFound = apperr.New(apperr.ErrNotFound, "produce_listing_not_found", "produce listing not found")
	ErrNotOwner        = apperr.New(apperr.ErrForbidden, "not_owner", "only the owner may modify this posting")
	ErrListingClosed   = apperr.New(apperr.ErrConflict, "listing_closed", "sold or expired listings can only be deleted")
	ErrCardModified    = apperr.New(apperr.ErrConflict, "market_card_modified", "market card was modified concurrently, reload and retry")
	ErrInvalidFilter   = apperr.New(apperr.ErrValidation, "invalid_filter", "filter expression is invalid")
	ErrImageType       = apperr.New(apperr.ErrValidation, "unsupported_image_type", "image must be jpeg, png or webp")
	ErrImageTooLarge   = apperr.New(apperr.ErrValidation, "image_too_large", "image exceeds the maximum allowed size")
)
