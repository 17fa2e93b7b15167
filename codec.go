package statsig

import jsoniter "github.com/json-iterator/go"

// jsonAPI is the codec for everything crossing the wire; raw values held as
// json.RawMessage decode through it as well.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary
