package models

// All lists every table the application owns, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Post{},
		&PostViewer{},
		&Comment{},
		&Reaction{},
		&Follow{},
		&PostSnapshot{},
		&LikeSnapshot{},
		&PageView{},
	}
}
