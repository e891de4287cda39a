package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
	"time"

	"timepresale/native/presale"
)

var csvHeader = []string{"index", "contributor", "amount", "referrer", "bonus", "timestamp"}

// ContributionsCSV builds a CSV export of the contribution ledger and returns
// the serialised data alongside a SHA-256 checksum of the payload.
func ContributionsCSV(records []*presale.ContributionRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		row := []string{
			strconv.FormatUint(record.Index, 10),
			record.Contributor.Hex(),
			amountString(record.Amount),
			referrerString(record),
			amountString(record.Bonus),
			time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

func referrerString(record *presale.ContributionRecord) string {
	if !record.HasReferrer() {
		return ""
	}
	return record.Referrer.Hex()
}
