package email

const (
	subjectQuoteIssuedFmt      = "Er offert %s från Nordflytt"
	subjectQuoteAcceptedFmt    = "Bekräftelse: offert %s accepterad"
	subjectQuoteSupersededFmt  = "Uppdaterad offert %s"
	subjectQuoteReconsentedFmt = "Bekräftelse: ny offert %s gäller"
	subjectQuoteExpiredFmt     = "Offert %s har gått ut"
	subjectPriceReconciled     = "Slutpris för er flytt"
)
