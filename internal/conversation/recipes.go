package conversation

import "github.com/cosmocart/cosmocart/pkg/models"

// DefaultRecipes is the meal-kit catalog offered in chat. Ingredient search
// terms go through the normal resolution pipeline, so the kits degrade
// gracefully when the backing catalog lacks an item.
func DefaultRecipes() []models.Recipe {
	return []models.Recipe{
		{
			Name: "Veg Biryani Kit",
			Ingredients: []models.Ingredient{
				{SearchTerm: "basmati rice", QtyPerServing: 0.5},
				{SearchTerm: "onion", QtyPerServing: 1},
				{SearchTerm: "curd", QtyPerServing: 0.5},
			},
		},
		{
			Name: "Paneer Butter Masala Kit",
			Ingredients: []models.Ingredient{
				{SearchTerm: "paneer", QtyPerServing: 0.5},
				{SearchTerm: "butter", QtyPerServing: 0.25},
				{SearchTerm: "tomato", QtyPerServing: 2},
			},
		},
		{
			Name: "Masala Omelette Kit",
			Ingredients: []models.Ingredient{
				{SearchTerm: "eggs", QtyPerServing: 2},
				{SearchTerm: "onion", QtyPerServing: 0.5},
				{SearchTerm: "tomato", QtyPerServing: 0.5},
			},
		},
	}
}
