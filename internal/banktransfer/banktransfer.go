// Package banktransfer builds the payment reference, EPC QR payload and
// customer instructions for orders paid by manual bank transfer.
package banktransfer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDetails holds everything a customer needs to execute the transfer.
// It is synthesized per request and never persisted.
type PaymentDetails struct {
	IBAN        string
	BIC         string
	Beneficiary string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Description string
}

type Instructions struct {
	Title  string
	Steps  []string
	Fields []Field
}

type Field struct {
	Label string
	Value string
}

var (
	digitsRe = regexp.MustCompile(`\d`)
	ibanRe   = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{1,30}$`)
)

// GenerateReference derives a 10-digit variable symbol from the order id:
// the last four digits found in the id, zero padded, followed by the last six
// digits of the current unix timestamp. Collisions between orders created in
// the same second with colliding trailing digits are tolerated; transfers are
// matched manually.
func GenerateReference(orderID string) string {
	digits := strings.Join(digitsRe.FindAllString(orderID, -1), "")
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	for len(digits) < 4 {
		digits = "0" + digits
	}

	ts := fmt.Sprintf("%d", time.Now().Unix())
	return digits + ts[len(ts)-6:]
}

// BuildQRPayload assembles the 11-line EPC QR code record (EPC069-12, SCT).
// Field order and count are fixed; optional fields stay as empty lines.
func BuildQRPayload(d PaymentDetails) string {
	lines := []string{
		"BCD",
		"002",
		"1", // UTF-8
		"SCT",
		d.BIC,
		d.Beneficiary,
		strings.ReplaceAll(d.IBAN, " ", ""),
		d.Currency + d.Amount.StringFixed(2),
		"", // purpose code, unused
		d.Reference,
		d.Description,
	}
	return strings.Join(lines, "\n")
}

// FormatInstructions is a pure display transform; it never fails and degrades
// to empty values for missing inputs.
func FormatInstructions(d PaymentDetails) Instructions {
	return Instructions{
		Title: "Pay by bank transfer",
		Steps: []string{
			"Open your banking app and choose a new SEPA payment, or scan the QR code.",
			"Fill in the beneficiary and amount exactly as shown below.",
			"Enter the payment reference so we can match your transfer to the order.",
			"Submit the transfer. We confirm the order once the funds arrive.",
		},
		Fields: []Field{
			{Label: "Beneficiary", Value: d.Beneficiary},
			{Label: "IBAN", Value: GroupIBAN(d.IBAN)},
			{Label: "BIC", Value: d.BIC},
			{Label: "Amount", Value: d.Amount.StringFixed(2) + " " + d.Currency},
			{Label: "Reference", Value: d.Reference},
		},
	}
}

// GroupIBAN reformats an IBAN into 4-character groups for display.
func GroupIBAN(iban string) string {
	compact := strings.ReplaceAll(iban, " ", "")
	var b strings.Builder
	for i, r := range compact {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateIBAN checks structure only (country code, check digits, BBAN).
// The mod-97 checksum is deliberately not verified; bank transfers are
// confirmed manually and a bad checksum surfaces there.
func ValidateIBAN(iban string) bool {
	return ibanRe.MatchString(strings.ToUpper(strings.ReplaceAll(iban, " ", "")))
}
