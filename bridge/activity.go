package bridge

import "github.com/e14n/pump2status/types"

// IsPublic reports whether any recipient of activity is the public collection.
func IsPublic(activity types.Activity) bool {
	for _, r := range activity.Recipients() {
		if r.ObjectType == types.ObjectCollection && r.ID == types.PublicCollection {
			return true
		}
	}
	return false
}

// IsForwardable reports whether activity is a public note post.
func IsForwardable(activity types.Activity) bool {
	return activity.Verb == types.VerbPost &&
		activity.Object.ObjectType == types.ObjectNote &&
		IsPublic(activity)
}

// FollowActivity is the activity a local user posts to follow id.
func FollowActivity(id string) types.Activity {
	return types.Activity{
		Verb: types.VerbFollow,
		Object: types.Object{
			ObjectType: types.ObjectPerson,
			ID:         "acct:" + id,
		},
	}
}
