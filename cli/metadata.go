package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var productIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FoodMetadata is the document whose hash is anchored on chain. Field order
// is part of the hash.
type FoodMetadata struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	ProducerInfo    string `json:"producerInfo"`
	ProductionDate  string `json:"productionDate"`
	Origin          string `json:"origin"`
	ProcessingSteps string `json:"processingSteps,omitempty"`
}

// isoMillis matches JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Normalize trims fields, checks required ones and turns a production date
// into an ISO timestamp.
func (m *FoodMetadata) Normalize() error {
	m.ProductID = strings.TrimSpace(m.ProductID)
	m.ProductName = strings.TrimSpace(m.ProductName)
	m.ProducerInfo = strings.TrimSpace(m.ProducerInfo)
	m.Origin = strings.TrimSpace(m.Origin)
	m.ProcessingSteps = strings.TrimSpace(m.ProcessingSteps)

	if m.ProductID == "" {
		return fmt.Errorf("product id is required")
	}
	if !productIDPattern.MatchString(m.ProductID) {
		return fmt.Errorf("product id %q may only contain letters, digits, '_' and '-'", m.ProductID)
	}
	if m.ProductName == "" {
		return fmt.Errorf("product name is required")
	}

	date := strings.TrimSpace(m.ProductionDate)
	if date == "" {
		m.ProductionDate = ""
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			m.ProductionDate = t.UTC().Format(isoMillis)
			return nil
		}
	}
	return fmt.Errorf("production date %q must be YYYY-MM-DD or RFC 3339", date)
}
