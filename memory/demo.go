package memory

import "github.com/vegasq/objql/query"

// Demo returns a provider holding two sample tables.
//
// Test has ten rows: n from 0 to 9, n2 = n % 5 and n3 = n / 3 (integer
// division).
//
// Users has nested data to join against: each user has an address object
// and a posts array, and one user has no posts.
func Demo(opts ...Option) *Provider {
	p := New(opts...)

	test := make([]map[string]interface{}, 10)
	for n := 0; n < 10; n++ {
		test[n] = map[string]interface{}{"n": n, "n2": n % 5, "n3": n / 3}
	}
	p.AddTable("Test", test,
		query.ColumnInfo{Name: "n", Type: "INTEGER"},
		query.ColumnInfo{Name: "n2", Type: "INTEGER"},
		query.ColumnInfo{Name: "n3", Type: "INTEGER"},
	)

	p.AddTable("Users", []map[string]interface{}{
		{
			"id":      1,
			"name":    "Alice",
			"age":     34,
			"address": map[string]interface{}{"city": "Lisbon", "zip": "1100"},
			"posts": []interface{}{
				map[string]interface{}{"id": 10, "title": "Hello", "likes": 5},
				map[string]interface{}{"id": 11, "title": "Parsing", "likes": 12},
			},
		},
		{
			"id":      2,
			"name":    "Bob",
			"age":     27,
			"address": map[string]interface{}{"city": "Oslo", "zip": "0150"},
			"posts": []interface{}{
				map[string]interface{}{"id": 20, "title": "Windows", "likes": 7},
			},
		},
		{
			"id":      3,
			"name":    "Carol",
			"age":     41,
			"address": map[string]interface{}{"city": "Lisbon", "zip": "1200"},
			"posts":   []interface{}{},
		},
	},
		query.ColumnInfo{Name: "id", Type: "INTEGER"},
		query.ColumnInfo{Name: "name", Type: "STRING"},
		query.ColumnInfo{Name: "age", Type: "INTEGER"},
		query.ColumnInfo{Name: "address", Type: "STRUCT"},
		query.ColumnInfo{Name: "posts", Type: "LIST"},
	)
	return p
}
