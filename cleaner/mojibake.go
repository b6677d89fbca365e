package cleaner

import "strings"

// mojibakeReplacer maps UTF-8 byte sequences that were mis-decoded as
// Latin-1/Windows-1252 back to the characters they encode. Longer sequences
// come first so partial prefixes never shadow a full match.
var mojibakeReplacer = strings.NewReplacer(
	"â€œ", "“", // left double quote
	"â€", "”", // right double quote
	"â€˜", "‘", // left single quote
	"â€™", "’", // right single quote
	"â€”", "—", // em dash
	"â€“", "–", // en dash
	"â€¦", "…", // ellipsis
	"Ã©", "é",
	"Ã¨", "è",
	"Ã¡", "á",
	"Ã¢", "â",
	"Ã³", "ó",
	"Ãº", "ú",
	"Ã±", "ñ",
	"Ã¼", "ü",
	"Ã¶", "ö",
	"Ã¤", "ä",
	"Ã§", "ç",
	"ÃŸ", "ß",
	"Â£", "£",
	"Â°", "°",
	"Â·", "·",
	"Â ", " ",
	" ", " ",
)

// RepairMojibake fixes known mis-decoded byte sequences before any
// tokenization happens.
func RepairMojibake(s string) string {
	return mojibakeReplacer.Replace(s)
}
