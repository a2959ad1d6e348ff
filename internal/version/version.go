package version

// Current is the released version of the deepdive CLI, without a "v" prefix.
const Current = "0.2.0"
