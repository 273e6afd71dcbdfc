package detector

import "regexp"

// pattern pairs a compiled regex with its PII kind, a base confidence score,
// and whether the match is anchored by a surrounding keyword (e.g. "MRN:",
// "routing#") versus a bare structural shape (e.g. an email address).
// Context-anchored patterns carry a capture group holding just the value;
// bare patterns match the value directly in group 0, except DEA, whose
// optional "DEA#" prefix sits outside its capture group.
//
// validate, when non-nil, is a second-pass check applied to the extracted
// value — used for patterns Go's RE2 engine cannot express inline (RE2 has
// no negative lookahead/lookbehind, unlike the PCRE patterns this catalog is
// ported from).
type pattern struct {
	kind            Kind
	re              *regexp.Regexp
	confidence      float64
	contextAnchored bool
	validate        func(value string) bool
}

// catalog is the fixed, compile-once set of detection patterns. Declaration
// order is significant: it is the tie-break order for same-class matches
// (see Detector.Detect).
//
// Ported from the reference PII detector's pattern table. Where that table
// relied on PCRE negative lookahead (the SSN exclusion ranges), RE2 cannot
// express the lookahead inline, so the exclusion is applied as a validate
// callback instead of embedding it in the regex.
var catalog = []pattern{
	// --- Personal identifiers ---
	{
		kind:       KindEmail,
		re:         regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		confidence: 0.95,
	},
	{
		kind:       KindPhone,
		re:         regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`),
		confidence: 0.8,
	},
	{
		kind:       KindSSN,
		re:         regexp.MustCompile(`\b[0-9]{3}[-\s]?[0-9]{2}[-\s]?[0-9]{4}\b`),
		confidence: 0.85,
		validate:   validSSN,
	},
	{
		kind:            KindPassport,
		re:              regexp.MustCompile(`(?i)\bpassport[#:\s]*([A-Z]{1,2}[0-9]{6,9}|[0-9]{9})\b`),
		confidence:      0.9,
		contextAnchored: true,
	},
	{
		kind:            KindDriversLic,
		re:              regexp.MustCompile(`(?i)\b(?:dl|d\.?l\.?|license)[#:\s]*([A-Z]?[0-9]{5,12})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},
	{
		kind:            KindDOB,
		re:              regexp.MustCompile(`(?i)\b(?:dob|d\.?o\.?b\.?|birth\s*date|date\s*of\s*birth)[:\s]*([0-9]{1,2}[-/][0-9]{1,2}[-/][0-9]{2,4})\b`),
		confidence:      0.9,
		contextAnchored: true,
	},

	// --- Financial ---
	{
		kind: KindCreditCard,
		re: regexp.MustCompile(`\b(?:` +
			`4[0-9]{3}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}|` +
			`4[0-9]{12}(?:[0-9]{3})?|` +
			`5[1-5][0-9]{2}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}|` +
			`5[1-5][0-9]{14}|` +
			`3[47][0-9]{2}[-\s]?[0-9]{6}[-\s]?[0-9]{5}|` +
			`3[47][0-9]{13}|` +
			`6(?:011|5[0-9]{2})[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}|` +
			`6(?:011|5[0-9]{2})[0-9]{12}` +
			`)\b`),
		confidence: 0.9,
	},
	{
		kind:            KindBankAccount,
		re:              regexp.MustCompile(`(?i)\b(?:account|acct)[#:\s]*([0-9]{8,17})\b`),
		confidence:      0.75,
		contextAnchored: true,
	},
	{
		kind:       KindIBAN,
		re:         regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}[A-Z0-9]{4}[0-9]{7}(?:[A-Z0-9]{0,16})?\b`),
		confidence: 0.85,
	},
	{
		kind:            KindRouting,
		re:              regexp.MustCompile(`(?i)\b(?:routing|aba)[#:\s]*([0-9]{9})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},
	{
		kind:            KindTaxID,
		re:              regexp.MustCompile(`(?i)\b(?:tax\s*id|tin|taxpayer)[#:\s]*([0-9]{2}[-\s]?[0-9]{7})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},
	{
		kind:            KindVAT,
		re:              regexp.MustCompile(`(?i)\bvat[#:\s]*([A-Z]{2}[A-Z0-9]{8,12})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},

	// --- Health / HIPAA ---
	{
		kind:            KindMRN,
		re:              regexp.MustCompile(`(?i)\b(?:mrn|medical\s*record|patient\s*(?:id|number))[#:\s]*([A-Z0-9]{6,15})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},
	{
		kind:            KindHealthIns,
		re:              regexp.MustCompile(`(?i)\b(?:member\s*id|insurance\s*id|policy\s*(?:number|#)|subscriber\s*id)[#:\s]*([A-Z0-9]{6,20})\b`),
		confidence:      0.8,
		contextAnchored: true,
	},
	{
		kind:       KindDEA,
		re:         regexp.MustCompile(`\b(?:DEA[#:\s]*)?([A-Z][A-Z9][0-9]{7})\b`),
		confidence: 0.7,
	},
	{
		kind:            KindNPI,
		re:              regexp.MustCompile(`(?i)\bnpi[#:\s]*([0-9]{10})\b`),
		confidence:      0.9,
		contextAnchored: true,
	},
	{
		kind:            KindICD,
		re:              regexp.MustCompile(`(?i)\b(?:icd[-\s]?10?|diagnosis)[:\s]*([A-Z][0-9]{2}(?:\.[0-9A-Z]{1,4})?)\b`),
		confidence:      0.8,
		contextAnchored: true,
	},
	{
		kind:       KindNDC,
		re:         regexp.MustCompile(`(?i)\bndc[#:\s]*([0-9]{4,5}[-\s]?[0-9]{3,4}[-\s]?[0-9]{1,2})\b`),
		confidence: 0.85,
		contextAnchored: true,
	},

	// --- Legal ---
	{
		kind:            KindCaseNumber,
		re:              regexp.MustCompile(`(?i)\b(?:case|docket)[#:\s]*([0-9]{1,2}[-:](?:cv|cr|mc)[-:][0-9]{3,6}(?:[-:][A-Z]{2,4})?)\b`),
		confidence:      0.9,
		contextAnchored: true,
	},
	{
		kind:            KindBarNumber,
		re:              regexp.MustCompile(`(?i)\b(?:bar|attorney)[#:\s]*([A-Z]{0,2}[0-9]{5,8})\b`),
		confidence:      0.7,
		contextAnchored: true,
	},
	{
		kind:            KindDocket,
		re:              regexp.MustCompile(`(?i)\bdocket[#:\s]*([0-9]{2}-[A-Z]{2,4}-[0-9]{3,7})\b`),
		confidence:      0.9,
		contextAnchored: true,
	},

	// --- Business ---
	{
		kind:            KindEIN,
		re:              regexp.MustCompile(`(?i)\b(?:ein|employer\s*id)[#:\s]*([0-9]{2}[-\s]?[0-9]{7})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},
	{
		kind:            KindDUNS,
		re:              regexp.MustCompile(`(?i)\b(?:duns|d-u-n-s)[#:\s]*([0-9]{2}[-\s]?[0-9]{3}[-\s]?[0-9]{4})\b`),
		confidence:      0.85,
		contextAnchored: true,
	},

	// --- Technical / secrets ---
	{
		kind:       KindAPIKey,
		re:         regexp.MustCompile(`\bsk-ant-(?:api[0-9]{2}-)?[A-Za-z0-9_-]{20,}\b`),
		confidence: 0.97,
	},
	{
		kind:       KindOpenAIKey,
		re:         regexp.MustCompile(`\bsk-[A-Za-z0-9]{32,}(?:-[A-Za-z0-9]+)?\b`),
		confidence: 0.95,
	},
	{
		kind:       KindGoogleKey,
		re:         regexp.MustCompile(`\bAIza[A-Za-z0-9_-]{35}\b`),
		confidence: 0.97,
	},
	{
		kind:       KindStripeKey,
		re:         regexp.MustCompile(`\b(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{24,}\b`),
		confidence: 0.97,
	},
	{
		kind:       KindAWSKey,
		re:         regexp.MustCompile(`\b(?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}\b`),
		confidence: 0.97,
	},
	{
		kind:       KindPrivateKey,
		re:         regexp.MustCompile(`(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----.*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		confidence: 0.99,
	},
	{
		kind:            KindPassword,
		re:              regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret|token)\s*[=:]\s*["']?([^\s"']{8,})["']?`),
		confidence:      0.7,
		contextAnchored: true,
	},
	{
		kind: KindIPAddr,
		re: regexp.MustCompile(`\b(?:10\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}|` +
			`172\.(?:1[6-9]|2[0-9]|3[01])\.[0-9]{1,3}\.[0-9]{1,3}|` +
			`192\.168\.[0-9]{1,3}\.[0-9]{1,3})\b`),
		confidence: 0.8,
	},
	{
		kind:       KindMACAddr,
		re:         regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`),
		confidence: 0.9,
	},
	{
		kind:       KindJWT,
		re:         regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*\b`),
		confidence: 0.95,
	},
	{
		kind:       KindGHToken,
		re:         regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,}\b`),
		confidence: 0.97,
	},
	{
		kind:       KindSlackTok,
		re:         regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
		confidence: 0.95,
	},
	{
		kind:       KindDBURL,
		re:         regexp.MustCompile(`(?i)(?:postgres|mysql|mongodb|redis|mssql|oracle)(?:ql)?://[^:]+:[^@]+@\S+`),
		confidence: 0.95,
	},
	{
		kind:            KindSecret,
		re:              regexp.MustCompile(`(?i)(?:^|\s)(?:SECRET|TOKEN|KEY|APIKEY|API_KEY|AUTH|CREDENTIAL)[_A-Z]*\s*[=:]\s*["']?([A-Za-z0-9_\-/+=]{16,})["']?`),
		confidence:      0.65,
		contextAnchored: true,
	},
}

// validSSN rejects SSN-shaped values using the area/group/serial exclusion
// ranges the Social Security Administration never issues: area 000, 666, or
// 900-999; group 00; serial 0000.
func validSSN(value string) bool {
	digits := make([]byte, 0, 9)
	for i := 0; i < len(value) && len(digits) < 9; i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	if len(digits) != 9 {
		return false
	}
	area := string(digits[0:3])
	group := string(digits[3:5])
	serial := string(digits[5:9])
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}
