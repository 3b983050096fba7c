package state

// Merge combines a local snapshot with the remote one. The three maps become
// the union of both sides with the remote value winning on shared keys, so
// remote data enriches local data but never deletes local-only entries.
// WatchLater only takes the remote value when it is non-empty.
//
// Neither input is modified; nil inputs are treated as empty states.
func Merge(local, remote *UserState) *UserState {
	merged := local.Clone()
	if remote == nil {
		return merged
	}

	for k, v := range remote.Skip {
		merged.Skip[k] = v
	}
	for k, v := range remote.Videos {
		merged.Videos[k] = v
	}
	for k, v := range remote.Chan2Playlist {
		merged.Chan2Playlist[k] = v
	}
	if remote.WatchLater != "" {
		merged.WatchLater = remote.WatchLater
	}

	return merged
}
