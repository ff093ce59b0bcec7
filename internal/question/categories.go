package question

// MixedCategory labels runs without a category filter.
const MixedCategory = "Mixed"

var categoryNames = map[string]string{
	"9":  "General Knowledge",
	"11": "Entertainment: Film",
	"12": "Entertainment: Music",
	"17": "Science & Nature",
	"18": "Computers",
	"21": "Sports",
	"22": "Geography",
	"23": "History",
	"24": "Politics",
}

// CategoryName maps an OpenTDB category id to its display name.
func CategoryName(id string) string {
	if name, ok := categoryNames[id]; ok {
		return name
	}
	return MixedCategory
}

// Categories returns the selectable category ids and names.
func Categories() map[string]string {
	out := make(map[string]string, len(categoryNames))
	for k, v := range categoryNames {
		out[k] = v
	}
	return out
}
