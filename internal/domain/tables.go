package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	&SysScheduler{},
	// Catalog
	&Category{},
	&Product{},
	&ProductAuditLog{},
	// Orders
	&Order{},
	&OrderItem{},
	&OrderAuditLog{},
}
