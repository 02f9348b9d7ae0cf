package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const housingHeader = "price,area,bedrooms,bathrooms,stories,mainroad,guestroom,basement,hotwaterheating,airconditioning,parking,prefarea,furnishingstatus"

// linearPrice is the exact price function behind linearHousingCSV.
func linearPrice(bed, bath, stories, area, guest, parking int) int {
	return 500000*bed + 1000000*bath + 800000*stories + 1000*area + 600000*guest + 300000*parking + 1180000
}

// linearHousingCSV builds rows whose price is an exact linear function of the features.
func linearHousingCSV(rows int) string {
	var b strings.Builder
	b.WriteString(housingHeader + "\n")
	for i := 0; i < rows; i++ {
		bed := 2 + i%4
		bath := 1 + i%3
		stories := 1 + (i/2)%4
		area := 3000 + 250*i + (i*i*37)%900
		guest := 0
		if i%5 == 0 || i%5 == 2 {
			guest = 1
		}
		parking := (i*3 + 1) % 4
		guestStr := "no"
		if guest == 1 {
			guestStr = "yes"
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,yes,%s,no,no,yes,%d,no,furnished\n",
			linearPrice(bed, bath, stories, area, guest, parking), area, bed, bath, stories, guestStr, parking)
	}
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validRequest() map[string]string {
	return map[string]string{
		"bedroom":   "3",
		"bathroom":  "1",
		"stories":   "2",
		"area":      "7420",
		"guestroom": "0",
		"parking":   "2",
	}
}
