package achievement

import (
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/mzalendo/maendeleo/core"
)

var (
	achTypeTag  = "achtype"
	achTypeText = "invalid achievement type"

	achCategoryTag  = "achcategory"
	achCategoryText = "invalid achievement category"

	achRarityTag  = "achrarity"
	achRarityText = "invalid achievement rarity"
)

func init() {
	_ = core.Validate.RegisterValidation(achTypeTag, oneOfValidation(AllTypes))
	core.RegisterCustomTranslation(core.Validate, core.Translator, achTypeTag, achTypeText)

	_ = core.Validate.RegisterValidation(achCategoryTag, oneOfValidation(AllCategories))
	core.RegisterCustomTranslation(core.Validate, core.Translator, achCategoryTag, achCategoryText)

	_ = core.Validate.RegisterValidation(achRarityTag, oneOfValidation(AllRarities))
	core.RegisterCustomTranslation(core.Validate, core.Translator, achRarityTag, achRarityText)
}

// oneOfValidation checks that the field value is one of `allowed`.
func oneOfValidation(allowed []string) validator.Func {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		if idx := sort.SearchStrings(sorted, val); idx < len(sorted) {
			return sorted[idx] == val
		}
		return false
	}
}
