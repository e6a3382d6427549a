package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
)

const classifySystemPrompt = `You are a document classification expert. Analyze the provided text and classify it into one of these categories:
- invoice: Business invoices, bills for services/products
- medical_bill: Hospital bills, medical invoices, insurance claims
- prescription: Medical prescriptions, pharmacy documents

Look for key indicators:
- Invoice: Item descriptions, quantities, prices, tax amounts, vendor information
- Medical_bill: Patient information, medical procedures, insurance details, provider names
- Prescription: Medication names, dosages, doctor names, pharmacy information

Respond with only the classification: invoice, medical_bill, or prescription`

// BuildClassifyPrompt returns the user prompt for document classification
func BuildClassifyPrompt(text string) string {
	return "Classify this document text:\n\n" + text
}

// BuildExtractionPrompt returns the system and user prompts for field extraction
func BuildExtractionPrompt(docType model.DocType, fields []string, text string) (system, user string) {
	var list strings.Builder
	for i, f := range fields {
		if i > 0 {
			list.WriteString("\n")
		}
		list.WriteString("- ")
		list.WriteString(f)
	}

	system = fmt.Sprintf(`You are an expert document data extraction specialist. Extract structured information from %[1]s documents.

EXTRACTION REQUIREMENTS:
1. Extract the following fields with high precision:
%[2]s

2. For each field, provide:
   - name: field name
   - value: extracted value (null if not found)
   - confidence: confidence score (0.0-1.0) based on text clarity and context
   - source: {"page": page_number, "bbox": [x1,y1,x2,y2]} (estimate coordinates if needed)

3. CONFIDENCE SCORING GUIDELINES:
   - 0.9-1.0: Clear, unambiguous text with strong context
   - 0.7-0.9: Clear text with some ambiguity or weak context
   - 0.5-0.7: Partially clear with moderate ambiguity
   - 0.3-0.5: Unclear text or high ambiguity
   - 0.0-0.3: Very poor quality or missing

4. SPECIAL HANDLING:
   - Dates: Extract in YYYY-MM-DD format, handle various input formats
   - Amounts: Extract as numbers, handle currency symbols and formatting
   - Lists: For line_items, medications, procedures - extract as structured arrays
   - Addresses: Combine multi-line addresses into single strings

5. OUTPUT FORMAT:
Return a JSON object with this exact structure:
{
  "fields": [
    {
      "name": "field_name",
      "value": "extracted_value",
      "confidence": 0.85,
      "source": {"page": 1, "bbox": [100, 200, 300, 220]}
    }
  ]
}

Be extremely careful with numerical values, dates, and proper names. If unsure, lower the confidence score rather than guessing.`,
		docType, list.String())

	user = fmt.Sprintf(`Extract structured data from this %s document:

DOCUMENT TEXT:
%s

Remember to:
- Be precise with numerical values and dates
- Provide realistic confidence scores
- Include source information for each field
- Return valid JSON only`, docType, text)

	return system, user
}
