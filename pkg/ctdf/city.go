package ctdf

// City tags select the feed schema a position record was built from
type City string

const (
	CityAmsterdam City = "amsterdam"
	CityStockholm City = "stockholm"
)

var KnownCities = []City{
	CityAmsterdam,
	CityStockholm,
}
