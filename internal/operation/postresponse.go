package operation

// dispatchPostResponse runs the post-response plugins. When a workflow ran,
// the plugins see each sub-operation it recorded and never the parent, since
// only the sub-operations carry the backend state. Otherwise they see the
// operation itself, once.
func (b *Base) dispatchPostResponse() {
	plugins := b.plugins()
	if !b.workflowExecuted {
		plugins.PostResponse(b.owner)
		return
	}
	for _, sub := range b.ctx.SubOperations() {
		plugins.PostResponse(sub)
	}
}
