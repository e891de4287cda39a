package exports

import (
	"bytes"
	"encoding/json"
	"math/big"
	"time"

	"timepresale/native/presale"
)

type jsonlRecord struct {
	Index       uint64 `json:"index"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
	Referrer    string `json:"referrer,omitempty"`
	Bonus       string `json:"bonus"`
	Timestamp   string `json:"timestamp"`
}

// ContributionsJSONL builds a JSON Lines export of the contribution ledger and
// returns the serialised payload alongside a checksum.
func ContributionsJSONL(records []*presale.ContributionRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		if record == nil {
			continue
		}
		line := jsonlRecord{
			Index:       record.Index,
			Contributor: record.Contributor.Hex(),
			Amount:      amountString(record.Amount),
			Referrer:    referrerString(record),
			Bonus:       amountString(record.Bonus),
			Timestamp:   time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339),
		}
		if err := encoder.Encode(line); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
