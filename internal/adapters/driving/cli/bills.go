package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// loadBill reads one bill file. JSON files carry full metadata; plain
// text files derive the bill ID from the filename and the title from
// the first line.
func loadBill(path string) (domain.Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("reading %s: %w", path, err)
	}

	base := filepath.Base(path)

	if strings.EqualFold(filepath.Ext(base), ".json") {
		var bill domain.Bill
		if err := json.Unmarshal(data, &bill); err != nil {
			return domain.Bill{}, fmt.Errorf("parsing %s: %w: %v", base, domain.ErrDocumentParse, err)
		}
		if bill.ID == "" {
			bill.ID = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return bill, nil
	}

	bill := domain.Bill{
		ID:   strings.TrimSuffix(base, filepath.Ext(base)),
		Text: string(data),
	}
	if idx := strings.IndexByte(bill.Text, '\n'); idx > 0 {
		bill.Title = strings.TrimSpace(bill.Text[:idx])
	} else {
		bill.Title = strings.TrimSpace(bill.Text)
	}
	return bill, nil
}

// loadBills reads a set of bill files, failing on the first bad path.
func loadBills(paths []string) ([]domain.Bill, error) {
	bills := make([]domain.Bill, 0, len(paths))
	for _, path := range paths {
		bill, err := loadBill(path)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}
