package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/specimen/model"
)

// PublicUserID is the placeholder principal used in testing mode, so
// creator-facing UI elements can be exercised without real users.
const PublicUserID = "00000000-0000-0000-0000-000000000000"

// Principal identifies the acting user for permission filtering.
type Principal struct {
	UserID string
	Admin  bool
}

// Visible reports whether the principal may see an item of the given type
// with the given creator list. With userOnly set, only creator membership
// counts; otherwise open-access types are visible to everyone.
func (p Principal) Visible(itemType model.ItemType, creatorIDs []string, userOnly bool) bool {
	if p.Admin {
		return true
	}
	for _, id := range creatorIDs {
		if id == p.UserID {
			return true
		}
	}
	if userOnly {
		return false
	}
	return itemType.OpenAccess()
}

// permissionFilter builds a scan filter expression equivalent to Visible.
// Returns an empty expression for admins (no filtering).
func permissionFilter(p Principal, userOnly bool) (string, map[string]string, map[string]types.AttributeValue) {
	if p.Admin {
		return "", nil, nil
	}
	values := map[string]types.AttributeValue{
		":uid": &types.AttributeValueMemberS{Value: p.UserID},
	}
	if userOnly {
		return "contains(creator_ids, :uid)", nil, values
	}
	names := map[string]string{"#t": "type"}
	values[":tsm"] = &types.AttributeValueMemberS{Value: string(model.TypeStartingMaterials)}
	values[":teq"] = &types.AttributeValueMemberS{Value: string(model.TypeEquipment)}
	return "(contains(creator_ids, :uid) OR #t = :tsm OR #t = :teq)", names, values
}

// mergeFilter combines an existing filter expression with the permission
// filter, merging attribute names and values.
func mergeFilter(base string, names map[string]string, values map[string]types.AttributeValue,
	p Principal, userOnly bool) (string, map[string]string, map[string]types.AttributeValue) {

	permExpr, permNames, permValues := permissionFilter(p, userOnly)
	if permExpr == "" {
		return base, names, values
	}
	if names == nil {
		names = map[string]string{}
	}
	if values == nil {
		values = map[string]types.AttributeValue{}
	}
	for k, v := range permNames {
		names[k] = v
	}
	for k, v := range permValues {
		values[k] = v
	}
	if base == "" {
		return permExpr, names, values
	}
	return fmt.Sprintf("(%s) AND %s", base, permExpr), names, values
}
