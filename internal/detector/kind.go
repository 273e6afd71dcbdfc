// Package detector finds PII and secrets in request text using a fixed
// catalog of compiled regular expressions, and resolves overlapping matches
// to a single non-overlapping span sequence.
package detector

// Kind classifies the category of sensitive data a Match belongs to.
// The string value is also the source for the token wire format's <KIND4>
// segment (its first four characters, or fewer if the code itself is
// shorter).
type Kind string

// The closed catalog of detectable PII and secret kinds, grouped by
// category. The tie-break order used when two patterns match an identical
// span with the same anchoring class is the order of the pattern catalog in
// patterns.go, not the declaration order here.
const (
	// Personal identifiers
	KindEmail      Kind = "EMAIL"
	KindPhone      Kind = "PHONE"
	KindSSN        Kind = "SSN"
	KindPassport   Kind = "PASSPORT"
	KindDriversLic Kind = "DRV_LIC"
	KindDOB        Kind = "DOB"

	// Financial
	KindCreditCard  Kind = "CREDIT_CARD"
	KindBankAccount Kind = "BANK_ACCT"
	KindIBAN        Kind = "IBAN"
	KindRouting     Kind = "ROUTING"
	KindTaxID       Kind = "TAX_ID"
	KindVAT         Kind = "VAT"

	// Health / HIPAA
	KindMRN        Kind = "MRN"
	KindHealthIns  Kind = "HEALTH_INS"
	KindDEA        Kind = "DEA"
	KindNPI        Kind = "NPI"
	KindICD        Kind = "ICD"
	KindNDC        Kind = "NDC"

	// Legal
	KindCaseNumber Kind = "CASE_NUM"
	KindBarNumber  Kind = "BAR_NUM"
	KindDocket     Kind = "DOCKET"

	// Business
	KindEIN  Kind = "EIN"
	KindDUNS Kind = "DUNS"

	// Technical / secrets
	KindAPIKey     Kind = "API_KEY"
	KindAWSKey     Kind = "AWS_KEY"
	KindPrivateKey Kind = "PRIVATE_KEY"
	KindPassword   Kind = "PASSWORD"
	KindIPAddr     Kind = "IP_ADDR"
	KindMACAddr    Kind = "MAC_ADDR"
	KindJWT        Kind = "JWT"
	KindGHToken    Kind = "GH_TOKEN"
	KindSlackTok   Kind = "SLACK_TOK"
	KindDBURL      Kind = "DB_URL"
	KindSecret     Kind = "SECRET"
	KindOpenAIKey  Kind = "OPENAI_KEY"
	KindGoogleKey  Kind = "GOOGLE_KEY"
	KindStripeKey  Kind = "STRIPE_KEY"
)

// kind4 returns the wire-format <KIND4> segment for k: its first four
// characters, or the whole code if shorter.
func kind4(k Kind) string {
	s := string(k)
	if len(s) <= 4 {
		return s
	}
	return s[:4]
}
