// Package harness runs import scenarios end to end.
//
// A scenario is a YAML file naming a scene, one or more import passes of
// CUE asset files, and assertions over the result. Each scenario runs
// against a fresh in-memory SQLite store with a deterministic clock and
// session ids, so the compiled drivers can be compared byte for byte with
// golden snapshots in testdata/golden.
//
//	name: smile
//	description: a control drives two morphs
//	scene: scene.yaml
//	passes:
//	  - assets: [smile.cue]
//	assertions:
//	  - type: value
//	    target: "Smile_L(fin)"
//	    set: {eCTRLSmile: 1}
//	    expect: 0.5
//
// Targets use the reference form of asset files: a channel name, or
// "joint:?rotation/z" for one axis of a joint.
package harness
