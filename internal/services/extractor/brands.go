package extractor

// knownBrands lists Australian supermarket brands recognised at the start of a
// product name. Order is irrelevant; matching is longest-first.
var knownBrands = []string{
	// Major food brands
	"Heinz", "Kellogg's", "Kelloggs", "Nestlé", "Nestle", "Cadbury", "Kraft",
	"Arnott's", "Arnotts", "Sanitarium", "Uncle Tobys", "Tip Top",
	"Helga's", "Helgas", "Bakers Delight", "Abbott's", "Abbotts",

	// Dairy & refrigerated
	"Bega", "Devondale", "Dairy Farmers", "Pauls", "Pura", "Yoplait",
	"Chobani", "Vaalia", "Jalna", "Brownes", "Farmers Union", "Anchor",
	"Western Star", "Lurpak", "Mainland", "Philadelphia", "Babybel",
	"The Collective", "Rokeby Farms", "Coon", "Cracker Barrel",

	// Sauces & condiments
	"Masterfoods", "MasterFoods", "Fountain", "Rosella", "Leggo's", "Leggos",
	"Dolmio", "Barilla", "San Remo", "Latina", "Lee Kum Kee", "Kikkoman",
	"Ayam", "Maggi", "Continental", "Kantong", "Valcom", "Passage To",

	// Canned goods & seafood
	"John West", "Sirena", "Safcol", "Greenseas", "SPC", "Edgell",
	"Ardmona", "Annalisa", "La Gina", "Ocean Rise", "Brunswick",

	// Snacks & confectionery
	"Smith's", "Smiths", "Doritos", "Pringles", "Red Rock Deli", "Kettle",
	"Lindt", "Ferrero", "Mars", "Snickers", "Kit Kat", "KitKat", "Twix",
	"M&M's", "M&Ms", "Maltesers", "Bounty", "Milky Way", "Toblerone",
	"Darrell Lea", "Allen's", "Allens", "The Natural Confectionery",
	"Mentos", "Skittles", "Starburst", "Haribo", "Werther's", "Werthers",
	"Tim Tam", "Shapes", "Tiny Teddy", "Tiny Teddys", "Oreo",

	// Chips & crackers
	"Thins", "CC's", "CCs", "Twisties", "Cheetos", "Cheezels", "Grain Waves",
	"Sakata", "Fantastic", "Ritz", "Jatz", "Salada", "Vita-Weat", "Vitaweat",

	// Breakfast & cereals
	"Weet-Bix", "Weetbix", "Nutri-Grain", "Nutrigrain", "Coco Pops",
	"Corn Flakes", "Special K", "Just Right", "Sultana Bran", "All-Bran",
	"Milo", "Quick Oats", "Carman's", "Carmans", "Freedom Foods",

	// Bread & bakery
	"Wonder", "Burgen", "Abbotts Village", "Lawson's", "Lawsons",
	"Golden", "Coupland's", "Couplands",

	// Soft drinks
	"Coca-Cola", "Coca Cola", "Pepsi", "Schweppes", "Kirks", "Solo",
	"Fanta", "Sprite", "Lift", "Sunkist", "Bundaberg", "L&P",

	// Water
	"Mount Franklin", "Pump", "Cool Ridge", "Frantelle", "Evian",
	"San Pellegrino", "Perrier", "Voss",

	// Juice
	"Golden Circle", "Berri", "Daily Juice", "Nudie", "Boost",

	// Coffee & tea
	"Lipton", "Moccona", "Nescafé", "Nescafe", "Vittoria", "Lavazza",
	"Robert Timms", "International Roast", "Twinings", "T2", "Dilmah",

	// Energy & sports
	"Red Bull", "V", "Mother", "Monster", "Gatorade", "Powerade", "Maximus",

	// Alcohol
	"VB", "Carlton", "XXXX", "Tooheys", "Coopers", "James Boag's",
	"James Boags", "Corona", "Heineken", "Smirnoff", "Absolut",
	"Jack Daniel's", "Jack Daniels", "Jim Beam", "Johnnie Walker",
	"Penfolds", "Jacob's Creek", "Jacobs Creek", "Yellowtail", "Wolf Blass",

	// Cleaning & household
	"Dettol", "Pine O Cleen", "Pine O Clean", "Glen 20", "Finish", "Fairy",
	"OMO", "Omo", "Dynamo", "Cold Power", "Surf", "Napisan", "Vanish",
	"Ajax", "Domestos", "Harpic", "Mr Muscle", "Spray & Wipe",
	"White King", "Earth Choice", "Ecostore", "Morning Fresh",
	"Palmolive", "Radiant", "Biozet", "Drive", "Fab",

	// Paper & tissues
	"Kleenex", "Viva", "Sorbent", "Quilton", "Purex", "Handee",

	// Personal care
	"Dove", "Nivea", "Lux", "Rexona", "Lynx", "Impulse",
	"Sure", "Degree", "Brut", "Old Spice",
	"Colgate", "Oral-B", "Oral B", "Sensodyne", "Listerine", "Macleans",
	"Pantene", "Head & Shoulders", "Head and Shoulders", "Garnier",
	"L'Oreal", "LOreal", "Schwarzkopf", "Tresemme", "TRESemme", "Sunsilk",
	"Herbal Essences", "John Frieda", "OGX",
	"Olay", "Neutrogena", "Cetaphil", "QV", "Aveeno", "Simple",
	"Gillette", "Schick", "Wilkinson Sword", "BIC",

	// Baby
	"Huggies", "Pampers", "BabyLove", "Curash", "Johnson's", "Johnsons",
	"Sudocrem", "Bepanthen", "Nappy San",
	"Heinz Baby", "Rafferty's Garden", "Raffertys Garden", "Bellamy's",
	"Bellamys", "Only Organic", "Farex", "Wattie's", "Watties",

	// Pet food
	"Pedigree", "Whiskas", "Dine", "Fancy Feast", "Purina", "Advance",
	"Optimum", "Supercoat", "My Dog", "Schmackos", "Lucky Dog",

	// Health
	"Blackmores", "Swisse", "Nature's Own", "Natures Own", "Cenovis",
	"Berocca", "Panadol", "Nurofen", "Voltaren",

	// International
	"Yeo's", "Yeos", "S&B", "Nongshim", "Nissin",
	"Indomie", "Mama", "Pandaroo", "Blue Dragon", "Sharwood's", "Sharwoods",

	// ALDI exclusive brands
	"Remano", "Brooklea", "Monarc", "Farmdale", "Belmont", "Grandessa",
	"Specially Selected", "Jindurra", "Bakers Life", "Choceur",
	"Knoppers", "Moser Roth", "Berryhill", "Colway", "Lacura", "Ombra",
	"Tandil", "Di-San", "Power Force", "Mamia", "Little Journey",
	"Fusia", "Asia Specialities", "Asia Green Garden",

	// Store brands
	"Woolworths", "Coles", "IGA", "Macro", "Homebrand", "Black & Gold",
	"Essentials", "Community Co", "You'll Love Coles",
}
