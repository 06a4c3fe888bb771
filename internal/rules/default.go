package rules

// Category names used by the built-in rules
const (
	CategoryPerpetualRights     = "Perpetual Rights"
	CategoryExclusivity         = "Exclusivity / Non-Compete"
	CategoryArbitrationVenue    = "Arbitration / Venue"
	CategoryIndemnification     = "Indemnification"
	CategoryOwnership           = "Ownership of Content / Likeness"
	CategoryUnilateralChanges   = "Unilateral Changes"
	CategoryConfidentiality     = "Confidentiality / Penalties"
	CategoryPaymentTerms        = "Payment Terms / Chargebacks"
	CategoryCancellationFees    = "Cancellation / No-Show Fees"
	CategoryBroadMediaRights    = "Broad Media Rights"
	CategoryPaymentCompensation = "Payment Terms / Compensation"
)

var defaultCatalog = NewCatalog(
	mustRule(CategoryPerpetualRights, SeverityHigh,
		`in perpetuity|perpetual rights|forever irrevocable`,
		"The agreement appears to grant rights forever (perpetual). This can mean you lose control of your work or likeness indefinitely.",
		"Ask to limit the term (e.g., 1-3 years) and specify exactly what rights are granted and where.",
	),
	mustRule(CategoryExclusivity, SeverityHigh,
		`exclusive\s+(services|rights)|non-\s*compete|exclusivity`,
		"Exclusive or non-compete terms can block you from working with others or earning elsewhere.",
		"Ask to remove exclusivity, narrow it to specific projects/brands, or add a short, paid exclusivity window.",
	),
	mustRule(CategoryArbitrationVenue, SeverityMedium,
		`binding arbitration|waive\s+jury|venue\s+shall\s+be|governing law`,
		"Arbitration and venue clauses can limit how and where disputes are resolved, often favoring the company.",
		"Ask for your local venue, the right to bring claims in court, and a mutual choice of law that is neutral.",
	),
	mustRule(CategoryIndemnification, SeverityHigh,
		`indemnif(y|ication)|hold\s+harmless`,
		"One-sided indemnification can make you responsible for broad legal risks.",
		"Make indemnification mutual and limited to breaches you actually cause, capped at fees received.",
	),
	mustRule(CategoryOwnership, SeverityHigh,
		`work for hire|assign\s+all\s+rights|exclusive\s+license|use of likeness`,
		"Transferring ownership or broad likeness rights can mean you can't control use of your image or content.",
		"Clarify you retain ownership and grant only a narrow, time-limited license for specified uses.",
	),
	mustRule(CategoryUnilateralChanges, SeverityMedium,
		`we\s+may\s+modify\s+this\s+agreement|subject to change without notice`,
		"Allows the other party to change terms without your consent.",
		"Require written mutual agreement for changes and notice periods.",
	),
	mustRule(CategoryConfidentiality, SeverityMedium,
		`non-?disparagement|liquidated damages|confidentiality`,
		"Overbroad confidentiality or penalties can silence you or impose heavy fees.",
		"Limit to legitimate trade secrets; remove punitive liquidated damages; allow safety and legal reporting.",
	),
	mustRule(CategoryPaymentTerms, SeverityMedium,
		`chargebacks|net\s*\d+|payment\s+upon\s+acceptance|withhold\s+payment`,
		"Slow or conditional payment terms and chargebacks can delay or reduce your income.",
		"Ask for clear rates, payment on delivery or within 7-14 days, and limit chargebacks to valid, documented issues.",
	),
	mustRule(CategoryCancellationFees, SeverityLow,
		`cancellation fee|no-?show fee|forfeit fee`,
		"Fees for cancellations or no-shows may be excessive or one-sided.",
		"Set fair, mutual cancellation terms with reasonable notice periods.",
	),
	mustRule(CategoryOwnership, SeverityHigh,
		`absolute right and permission to use`,
		"Grants extremely broad rights to use your content or likeness without meaningful limits.",
		"Narrow the grant to specific, necessary uses; limit scope, territory, and duration; retain approval rights for sensitive uses.",
	),
	mustRule(CategoryBroadMediaRights, SeverityHigh,
		`in any media now known or hereinafter\s+invented`,
		"Allows use across all current and future media, which is unusually broad and risky.",
		"Limit media types to those actually needed today, or require mutual consent for new media in the future.",
	),
	mustRule(CategoryPerpetualRights, SeverityHigh,
		`without\s+time`,
		"Suggests no time limit on rights, effectively making them perpetual.",
		"Add a clear term (e.g., 1-3 years) and renewal only by mutual written agreement.",
	),
	mustRule(CategoryPaymentCompensation, SeverityMedium,
		`no\s+claim\s+to\s+compensation`,
		"States you have no right to compensation, which can waive payment for your work or likeness.",
		"Ensure express compensation terms are included, or remove any clause waiving compensation rights.",
	),
)

// Default returns the built-in catalog. Every call returns the same
// instance, compiled once at package initialization.
func Default() *Catalog {
	return defaultCatalog
}
