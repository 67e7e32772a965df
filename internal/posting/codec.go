package posting

import (
	"encoding/json"
	"fmt"

	"github.com/cleared-dev/tillbook/internal/model"
)

// Encode serializes ev for the outbox.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", eventName(ev), err)
	}
	return data, nil
}

// Decode restores an event stored under the given reference tag.
func Decode(ref model.Reference, payload []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch ref {
	case model.RefOrder:
		var e SaleEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	case model.RefReturn:
		var e ReturnEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	case model.RefAdjustment:
		var e StockAdjustmentEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	case model.RefPurchaseOrder, model.RefGoodsReceipt, model.RefMarketPurchase:
		var e PurchaseEvent
		err = json.Unmarshal(payload, &e)
		if e.Kind == "" {
			e.Kind = ref
		}
		ev = e
	case model.RefPayment:
		var e PaymentEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("no event type for reference %q", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ref, err)
	}
	return ev, nil
}
