package domain

import "agrinexus/internal/pkg/apperr"

var (
	ErrRequestNotFound   = apperr.New(apperr.ErrNotFound, "delivery_request_not_found", "delivery request not found")
	ErrShipmentNotFound  = apperr.New(apperr.ErrNotFound, "shipment_not_found", "no shipment has been created for this delivery request")
	ErrCardNotFound      = apperr.New(apperr.ErrNotFound, "market_card_not_found", "market card not found")
	ErrNotParticipant    = apperr.New(apperr.ErrForbidden, "not_participant", "only the buyer or the seller may access this delivery request")
	ErrWrongActor        = apperr.New(apperr.ErrForbidden, "wrong_actor", "this action is not allowed for your role on the request")
	ErrOwnCard           = apperr.New(apperr.ErrForbidden, "own_card", "you cannot request delivery on your own market card")
	ErrCardInactive      = apperr.New(apperr.ErrConflict, "market_card_inactive", "market card is not active")
	ErrInvalidTransition = apperr.New(apperr.ErrConflict, "invalid_transition", "delivery request status does not allow this transition")
	ErrMutationInFlight  = apperr.New(apperr.ErrConflict, "mutation_in_flight", "another change to this delivery request is in progress")
)

// WarningQuantityExceedsAvailable 请求数量超过卡片可用数量时返回的非阻塞警告
const WarningQuantityExceedsAvailable = "requested_quantity_exceeds_available"

// ErrShipmentExists 并发创建物流记录时唯一键冲突
var ErrShipmentExists = apperr.New(apperr.ErrConflict, "shipment_exists", "a shipment already exists for this delivery request")
