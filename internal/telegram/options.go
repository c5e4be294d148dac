package telegram

// applyOptions folds SendOptions into the request params map.
func applyOptions(params map[string]any, opts *SendOptions) {
	if opts == nil {
		return
	}
	if opts.ParseMode != "" {
		params["parse_mode"] = opts.ParseMode
	}
	if opts.DisableWebPagePreview {
		params["disable_web_page_preview"] = true
	}
	if opts.ReplyMarkup != nil {
		params["reply_markup"] = opts.ReplyMarkup
	}
}
