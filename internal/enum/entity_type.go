package enum

type EntityType string

const (
	ACCOUNT EntityType = "ACCOUNT"
	FOLDER  EntityType = "FOLDER"
	MESSAGE EntityType = "MESSAGE"
)

func (entityType EntityType) String() string {
	return string(entityType)
}

func GetEntityType(s string) EntityType {
	return EntityType(s)
}
