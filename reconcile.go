package montgomery

// reconcileCollection merges the source collection into the
// destination one, reusing destination items that carry the business
// key of a source item, creating items for the rest and removing every
// destination item no source item claimed. A destination item is
// claimed at most once; later source items with the same key get fresh
// instances. Item order follows the destination collection for reused
// items and source order for appended ones.
func reconcileCollection(call *Call, child *Transform, src, dst Collection) error {
	dstItems, err := dst.Items()
	if err != nil {
		return err
	}
	byKey := make(map[Key]any, len(dstItems))
	for _, item := range dstItems {
		key, err := child.dest.ComputeCacheKey(call, item, child.cacheTag)
		if err != nil {
			return err
		}
		if key.Defined() {
			if _, dup := byKey[key]; !dup {
				byKey[key] = item
			}
		}
	}

	srcItems, err := src.Items()
	if err != nil {
		return err
	}
	used := make(map[any]bool, len(srcItems))
	for _, item := range srcItems {
		key, err := child.source.ComputeCacheKey(call, item, child.cacheTag)
		if err != nil {
			return err
		}
		var match any
		if key.Defined() {
			if m, ok := byKey[key]; ok && !used[m] {
				match = m
			}
		}
		out, err := child.Invoke(call, item, match)
		if err != nil {
			return err
		}
		if match == nil && !used[out] {
			if err := dst.Add(out); err != nil {
				return err
			}
		}
		used[out] = true
	}

	for _, item := range dstItems {
		if !used[item] {
			if err := dst.Remove(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceCollection rebuilds the destination collection from scratch.
// Representations whose collection items carry no reusable identity
// (flattened records) take this path.
func replaceCollection(call *Call, child *Transform, src, dst Collection) error {
	if err := dst.Clear(); err != nil {
		return err
	}
	srcItems, err := src.Items()
	if err != nil {
		return err
	}
	for _, item := range srcItems {
		out, err := child.Invoke(call, item, nil)
		if err != nil {
			return err
		}
		if err := dst.Add(out); err != nil {
			return err
		}
	}
	return nil
}
