package extract

import (
	"encoding/json"
	"strings"
)

// Example is one few-shot demonstration.
type Example struct {
	Text    string
	Records []Record
}

// Examples are the demonstrations included in every extraction prompt.
var Examples = []Example{
	{
		Text: "In one embodiment, the nitrogen oxide storage material comprises alkaline earth material Supported on ceria particles having a crystallite size of 10 nm and the alkaline earth oxide having a crystallite size of between about 20-40 nm.",
		Records: []Record{
			NewRecord("alkaline earth material", "crystallite size", "10", "nm"),
			NewRecord("alkaline earth material", "crystallite size", "between 20 and 40", "nm"),
		},
	},
	{
		Text: "The invention provides a composition comprising the following: A) a first polymer composition comprising an anhydride functionalized ethylene-based polymer, and optionally, an ethylene-based polymer; B) a filler; and where in the anhydride functionalized ethylene-based polymer has a density from 0.855 g/cc to 0.900 g/cc and a melt viscosity, at 177° C., from 1000 to 50,000 cP.",
		Records: []Record{
			NewRecord("anhydride functionalized ethylene-based polymer", "density", "from 0.855 to 0.900", "g/cc"),
			NewRecord("anhydride functionalized ethylene-based polymer", "melt viscosity at 177° C", "from 1000 to 50,000", "cP"),
		},
	},
	{
		Text: "In one embodiment of the invention, the novel energy storage device comprises a cathode with a thickness of approximately 50 micrometers, an anode with a surface area of about 1 square centimeter, and an electrolyte solution with a concentration of 0.5 moles per liter. The device further includes a separator membrane with a pore size of 10 nanometers and a specific resistance of 0.1 ohm-centimeters.",
		Records: []Record{
			NewRecord("cathode", "thickness", "approximately 50", "micrometers"),
			NewRecord("anode", "surface area", "1", "square centimeter"),
			NewRecord("electrolyte solution", "concentration", "0.5", "moles per liter"),
			NewRecord("separator membrane", "pore size", "10", "nanometers"),
			NewRecord("separator membrane", "specific resistance", "0.1", "ohm-centimeters"),
		},
	},
	{
		Text: "Styrene resin particles having an average particle diameter of 8 μm, an average value of the 10% compressive elastic modulus of 3,080 MPa, and a variation coefficient of 30.5% were used as the base particles.",
		Records: []Record{
			NewRecord("Styrene resin particles", "average particle diameter", "8", "μm"),
			NewRecord("Styrene resin particles", "average value of compressive elastic modulus", "10% of 3,080", "MPa"),
		},
	},
	{
		Text: "For example, the recycled powder can be a recycled polyamide 12 (rPA12) powder with an average particle diameter of less than 100 micrometers.",
		Records: []Record{
			NewRecord("recycled polyamide 12 (rPA12) powder", "average particle diameter", "less than 100", "micrometers"),
		},
	},
}

const extractionInstructions = `Identify and extract measurements from the patent text below. A measurement has four fields:

- "element": the entity or material being measured
- "property": the characteristic being quantified, e.g. length, density, diameter
- "value": the numerical value, values or range. MUST contain digits; never empty, "not specified", "NA" or "N/A"
- "unit": the unit of measurement. Never empty, "unitless", "not specified", "NA" or "N/A"

Return a JSON object {"records": [...]} with one object per measurement, or {"records": []} when the text has none.
Respond with ONLY the JSON object, no other text.`

// BuildPrompt assembles instructions, the few-shot examples and the chunk.
func BuildPrompt(chunkText string) string {
	var sb strings.Builder
	sb.WriteString(extractionInstructions)
	sb.WriteString("\n\n")
	for _, ex := range Examples {
		out, _ := json.Marshal(map[string][]Record{"records": ex.Records})
		sb.WriteString("Input: ")
		sb.WriteString(ex.Text)
		sb.WriteString("\nOutput: ")
		sb.Write(out)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Input: ")
	sb.WriteString(chunkText)
	sb.WriteString("\nOutput:")
	return sb.String()
}
