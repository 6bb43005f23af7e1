package bazaar

import (
	"encoding/json"
	"sync"

	x402 "github.com/x402-foundation/x402-go"
)

// Catalog is an in-memory registry of discovered resources, keyed by
// (method, resource URL) so re-verification of the same resource updates
// in place.
type Catalog struct {
	mu        sync.RWMutex
	resources map[string]DiscoveredResource
	order     []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		resources: make(map[string]DiscoveredResource),
	}
}

// Register adds or refreshes a discovered resource.
func (c *Catalog) Register(resource DiscoveredResource) {
	key := resource.Method + " " + resource.ResourceURL

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.resources[key]; !exists {
		c.order = append(c.order, key)
	}
	c.resources[key] = resource
}

// List returns a page of discovered resources in registration order and
// the total count. A non-positive limit returns everything after offset.
func (c *Catalog) List(limit, offset int) ([]DiscoveredResource, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.order)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []DiscoveredResource{}, total
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]DiscoveredResource, 0, end-offset)
	for _, key := range c.order[offset:end] {
		page = append(page, c.resources[key])
	}
	return page, total
}

// AfterVerifyHook returns a facilitator after-verify hook that catalogs
// every discoverable resource seen in a valid v2 payment. Extraction
// failures are swallowed: discovery never affects verification.
func (c *Catalog) AfterVerifyHook() x402.FacilitatorAfterVerifyHook {
	return func(ctx x402.FacilitatorVerifyResultContext) error {
		if !ctx.Result.IsValid || ctx.PaymentPayload.X402Version != 2 {
			return nil
		}

		payloadBytes, err := json.Marshal(ctx.PaymentPayload)
		if err != nil {
			return nil
		}
		requirementsBytes, err := json.Marshal(ctx.PaymentRequirements)
		if err != nil {
			return nil
		}

		discovered, err := ExtractDiscoveryInfo(payloadBytes, requirementsBytes, true)
		if err != nil || discovered == nil {
			return nil
		}

		c.Register(*discovered)
		return nil
	}
}
