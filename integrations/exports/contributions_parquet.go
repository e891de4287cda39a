package exports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"timepresale/native/presale"
)

// contributionRow is the parquet schema of one ledger record. Wei and point
// amounts stay decimal strings since they overflow INT64.
type contributionRow struct {
	Index       int64  `parquet:"name=index, type=INT64"`
	Contributor string `parquet:"name=contributor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount      string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Referrer    string `parquet:"name=referrer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bonus       string `parquet:"name=bonus, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp   string `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ContributionsParquet builds a snappy-compressed parquet export of the
// contribution ledger and returns it with a SHA-256 checksum.
func ContributionsParquet(records []*presale.ContributionRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(buffer), new(contributionRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		if record == nil {
			continue
		}
		row := &contributionRow{
			Index:       int64(record.Index),
			Contributor: record.Contributor.Hex(),
			Amount:      amountString(record.Amount),
			Referrer:    referrerString(record),
			Bonus:       amountString(record.Bonus),
			Timestamp:   time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	return checksummed(buffer.Bytes())
}
