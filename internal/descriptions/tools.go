package descriptions

// Tool descriptions with practical examples and use cases

const (
	ContractAnalyzeFileDescription = `Flag risky clauses in a contract file (PDF, scanned image, or plain text).

**When to use:** A user shares a contract, agreement, release form, or brand deal and wants to know what to watch out for before signing.

**Why it's useful:** Text is recovered even from scanned or malformed PDFs (native text layer, then a robust re-parse, then OCR), and every flag carries its position, severity, a plain-language explanation, and negotiation guidance.

**Examples:**
• Review a talent agreement: "Check talent-agreement.pdf for anything one-sided"
• Scanned brand deal: "Analyze the photo of my sponsorship contract, brand-deal.jpg"
• Quick pass without the model narrative: "Flag clauses in nda.pdf, advise=false"

**Common workflows:**
1. Contract Review: contract_analyze_file → read high severity flags → contract_advice on each
2. Comparison: analyze two drafts → compare flag counts per category

**Best practices:** Relative paths resolve against the server's document directory. Flags are pattern matches, not legal advice; confirm anything material with a lawyer.`

	ContractScanTextDescription = `Flag risky clauses in contract text that is already available as plain text.

**When to use:** The contract was pasted into the conversation or extracted elsewhere.

**Examples:**
• "Scan this clause: 'Company may use Talent's likeness in perpetuity throughout the universe'"
• "Check the payment section I pasted for chargeback terms"

**Best practices:** Send the full clause with surrounding sentences; excerpts in the result include up to 80 characters of context on each side.`

	ContractListRulesDescription = `List the risk rules the analyzer checks, with severity, explanation, and guidance.

**When to use:** To explain what categories of risk are covered, or before adding custom rules.

**Examples:**
• "What kinds of contract risks can you detect?"
• "Which rules are high severity?"`

	ContractAdviceDescription = `Ask a free-form question about a contract clause or negotiation point.

**When to use:** After analysis, when the user wants to understand a specific flag or how to push back on it.

**Examples:**
• "Is Net 90 payment normal for a sponsored post?" with the payment clause as context
• "How do I ask to narrow an exclusivity clause?"

**Best practices:** Include the clause text as context. Requires an advisory model API key on the server; otherwise the tool reports that advice is unavailable.`

	ContractServerInfoDescription = `Get server information, available tools, the rule catalog size, and whether OCR and narrative analysis are enabled.

**When to use:** Start of a session, or when a tool reports a configuration problem.`
)
