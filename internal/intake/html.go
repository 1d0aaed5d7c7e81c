package intake

import _ "embed"

//go:embed static/index.html
var indexHTML []byte

//go:embed static/thank-you.html
var thankYouHTML []byte

//go:embed static/health811.html
var health811HTML []byte

//go:embed static/app.css
var appCSS []byte

//go:embed static/app.js
var appJS []byte
