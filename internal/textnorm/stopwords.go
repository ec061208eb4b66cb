package textnorm

// Normalized Spanish function words, plus the English ones that show up in
// mixed-language questions.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "al", "algo", "algun", "alguna", "algunas", "alguno", "algunos", "ante", "antes",
		"aqui", "asi", "cada", "como", "con", "contra", "cual", "cuales", "cuya", "de", "del",
		"desde", "donde", "durante", "e", "el", "ella", "ellas", "ellos", "en", "entre", "era",
		"es", "esa", "esas", "ese", "eso", "esos", "esta", "estan", "estas", "este", "esto",
		"estos", "fue", "ha", "hay", "la", "las", "le", "les", "lo", "los", "mas", "me", "mi",
		"mis", "muy", "nos", "o", "os", "otra", "otro", "para", "pero", "por", "porque", "que",
		"quien", "se", "sea", "ser", "si", "sin", "sobre", "son", "su", "sus", "tambien", "te",
		"tiene", "tienen", "tu", "tus", "u", "un", "una", "unas", "uno", "unos", "usted", "y", "ya",
		"yo", "quiero", "puedo", "saber", "favor",
		"the", "and", "for", "what", "how", "is", "are", "of", "to", "in", "on", "with",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether the normalized word w is a stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
