package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Document{},
		&DependencyEdge{},
		&ReviewRecord{},
		&WorkflowInstance{},
	}
}
