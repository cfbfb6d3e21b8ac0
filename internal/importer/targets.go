package importer

// targets.go defines the built-in import targets. Each target's field specs
// drive header mapping, coercion, and template generation for that entity.

func init() {
	Register(Target{
		Entity: "orders",
		Label:  "Orders",
		Fields: []FieldSpec{
			{Key: "orderNumber", Label: "Order Number", Kind: KindText, Required: true},
			{Key: "eventType", Label: "Event Type", Kind: KindText},
			{Key: "eventDate", Label: "Event Date", Kind: KindDate},
			{Key: "orderDate", Label: "Order Date", Kind: KindDate, DateFallbackNow: true},
			{Key: "status", Label: "Status", Kind: KindText},
			{Key: "totalAmount", Label: "Total Amount", Kind: KindCurrency},
			{Key: "depositAmount", Label: "Deposit Amount", Kind: KindCurrency},
			{Key: "notes", Label: "Notes", Kind: KindText},
		},
		HeaderHints: []string{"Order Number"},
	})

	Register(Target{
		Entity: "order_items",
		Label:  "Order Items",
		Fields: []FieldSpec{
			{Key: "orderNumber", Label: "Order Number", Kind: KindText, Required: true},
			{Key: "itemName", Label: "Item Name", Kind: KindText, Required: true},
			{Key: "quantity", Label: "Quantity", Kind: KindInteger, IntegerDefault: 1},
			{Key: "unitPrice", Label: "Unit Price", Kind: KindCurrency},
		},
		HeaderHints: []string{"Order Number", "Item Name"},
	})

	Register(Target{
		Entity: "recipes",
		Label:  "Recipes",
		Fields: []FieldSpec{
			{Key: "name", Label: "Name", Kind: KindText, Required: true},
			{Key: "category", Label: "Category", Kind: KindText},
			{Key: "servings", Label: "Servings", Kind: KindInteger, IntegerDefault: 1},
			{Key: "totalCost", Label: "Total Cost", Kind: KindCurrency},
			{Key: "description", Label: "Description", Kind: KindText},
		},
	})

	Register(Target{
		Entity: "contacts",
		Label:  "Contacts",
		Fields: []FieldSpec{
			{Key: "firstName", Label: "First Name", Kind: KindText},
			{Key: "lastName", Label: "Last Name", Kind: KindText},
			{Key: "email", Label: "Email", Kind: KindText},
			{Key: "phone", Label: "Phone", Kind: KindText},
			{Key: "company", Label: "Company", Kind: KindText},
			{Key: "notes", Label: "Notes", Kind: KindText},
		},
	})
}
